// Package apex adapts an apex/log interface to querycache.Logger.
package apex

import (
	"github.com/apex/log"
	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

type Logger struct{ L log.Interface }

func (a Logger) Debug(msg string, f querycache.Fields) { a.entry(f).Debug(msg) }
func (a Logger) Info(msg string, f querycache.Fields)  { a.entry(f).Info(msg) }
func (a Logger) Warn(msg string, f querycache.Fields)  { a.entry(f).Warn(msg) }
func (a Logger) Error(msg string, f querycache.Fields) { a.entry(f).Error(msg) }

func (a Logger) entry(f querycache.Fields) *log.Entry {
	l := a.L
	if l == nil {
		l = log.Log
	}
	return l.WithFields(log.Fields(f))
}
