package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// JobLoggers returns the glog and go-job views of one named child so async
// workers and the queue log through the same zap core as the receiver.
func (p *Provider) JobLoggers(name string) (glog.Logger, job.Logger) {
	logger := p.GetLogger(name)
	return logger, job.GoLogger(logger)
}

// JobProvider exposes the provider to go-job components that look loggers up
// by name.
func (p *Provider) JobProvider() job.LoggerProvider {
	return job.GoLoggerProvider(p)
}
