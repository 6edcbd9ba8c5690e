package service

import (
	"context"
	"errors"
	"sync"

	"aijudge-backend/notify"
)

// fakeEngine returns canned responses in order, repeating the last one
type fakeEngine struct {
	mu           sync.Mutex
	responses    []string
	err          error
	unconfigured bool
	prompts      []string
}

func (f *fakeEngine) Configured() bool { return !f.unconfigured }

func (f *fakeEngine) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no canned response")
	}
	out := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return out, nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(event notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) published() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

const (
	verdictForA      = `{"decision":"favor_side_a","reasoning":"Rent was unpaid for three months.","keyFindings":["no payment"],"legalPrinciples":["contract"],"confidence":0.8,"openToReconsideration":true}`
	responseNoChange = `{"response":"The argument does not change the outcome.","verdictChange":"none","confidence":0.7}`
)
