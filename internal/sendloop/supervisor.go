package sendloop

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/m3rciful/discordbot/core/errreport"
	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
)

type loop struct {
	job    Job
	cancel context.CancelFunc
}

// Supervisor owns one running loop per chat.
type Supervisor struct {
	runner *Runner

	mu    sync.Mutex
	loops map[int64]*loop
	wg    sync.WaitGroup
}

// NewSupervisor returns a Supervisor that runs loops with r.
func NewSupervisor(r *Runner) *Supervisor {
	return &Supervisor{runner: r, loops: make(map[int64]*loop)}
}

// Launch starts a loop for chatID, cancelling any loop the chat already has.
func (s *Supervisor) Launch(chatID int64, job Job) {
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{job: job, cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.loops[chatID]; ok {
		prev.cancel()
	}
	s.loops[chatID] = l
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.LoopsActive.Inc()
	go func() {
		defer s.wg.Done()
		defer metrics.LoopsActive.Dec()
		defer cancel()
		defer s.forget(chatID, l)
		defer func() {
			if rec := recover(); rec != nil {
				logger.LogEvent(ctx, logger.Loop, slog.LevelError, "loop.panic",
					slog.String("status", "fail"),
					slog.Int64("chat_id", chatID),
					slog.String("err", fmt.Sprint(rec)),
				)
				errreport.CapturePanic(rec, map[string]string{"chat_id": strconv.FormatInt(chatID, 10)})
			}
		}()
		s.runner.Run(ctx, chatID, job)
	}()
}

func (s *Supervisor) forget(chatID int64, l *loop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loops[chatID] == l {
		delete(s.loops, chatID)
	}
}

// Stop cancels the chat's loop and reports whether one was running. It does not
// wait for the loop to exit.
func (s *Supervisor) Stop(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loops[chatID]
	if !ok {
		return false
	}
	l.cancel()
	delete(s.loops, chatID)
	return true
}

// Active returns the number of running loops.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loops)
}

// Jobs returns a snapshot of running jobs keyed by chat.
func (s *Supervisor) Jobs() map[int64]Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Job, len(s.loops))
	for id, l := range s.loops {
		out[id] = l.job
	}
	return out
}

// Close cancels every loop and waits for all of them to finish.
func (s *Supervisor) Close() {
	s.mu.Lock()
	for id, l := range s.loops {
		l.cancel()
		delete(s.loops, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
