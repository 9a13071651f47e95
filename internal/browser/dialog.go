package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod/lib/proto"
	"github.com/v0xg/bookcheck/internal/failure"
	"go.uber.org/zap"
)

// ErrDialogHandled is returned when a dialog expectation is accepted twice.
var ErrDialogHandled = errors.New("dialog already handled")

// Dialog is a native JavaScript dialog raised by the page.
type Dialog struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

func (d *Dialog) unexpected() *failure.UnexpectedDialog {
	return &failure.UnexpectedDialog{Type: d.Type, Message: d.Message, URL: d.URL}
}

// DialogExpectation is a one-shot future for the next dialog. Register it with
// Session.ExpectDialog immediately before the action that may raise the
// dialog, then Wait for it and Accept it once its contents are verified.
type DialogExpectation struct {
	s  *Session
	ch chan Dialog

	once   sync.Once
	got    *Dialog
	err    error
	accept sync.Once
}

// ExpectDialog registers an expectation for the next dialog. Any dialog that
// opens while no expectation is registered is recorded as unexpected.
func (s *Session) ExpectDialog() *DialogExpectation {
	d := &DialogExpectation{s: s, ch: make(chan Dialog, 1)}
	s.mu.Lock()
	s.expect = d
	s.mu.Unlock()
	return d
}

// UnexpectedDialog returns the first dialog that opened with no expectation.
func (s *Session) UnexpectedDialog() *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unexpected
}

func (s *Session) onDialog(e *proto.PageJavascriptDialogOpening) {
	d := Dialog{Type: string(e.Type), Message: e.Message, URL: e.URL}

	s.mu.Lock()
	exp := s.expect
	s.expect = nil
	if exp == nil && s.unexpected == nil {
		s.unexpected = &d
	}
	s.mu.Unlock()

	if exp != nil {
		exp.ch <- d
		s.log.Debug("dialog opened", zap.String("type", d.Type), zap.String("message", d.Message))
	} else {
		s.log.Warn("unexpected dialog", zap.String("type", d.Type), zap.String("message", d.Message))
	}

	select {
	case s.dialogOpened <- struct{}{}:
	default:
	}
}

// Wait blocks until the dialog opens or the session's action bound elapses.
// The first result is cached; later calls return it again.
func (d *DialogExpectation) Wait() (Dialog, error) {
	d.once.Do(func() {
		ctx, cancel := context.WithTimeout(d.s.ctx, d.s.timeout)
		defer cancel()

		select {
		case got := <-d.ch:
			d.got = &got
		case <-ctx.Done():
			d.err = ctx.Err()
			d.s.mu.Lock()
			if d.s.expect == d {
				d.s.expect = nil
			}
			d.s.mu.Unlock()
			// A dialog can land between the deadline and the unregister.
			select {
			case got := <-d.ch:
				d.got, d.err = &got, nil
			default:
			}
		}
	})
	if d.err != nil {
		return Dialog{}, d.err
	}
	return *d.got, nil
}

// Accept closes the dialog and lets the click that raised it finish.
func (d *DialogExpectation) Accept() error {
	if _, err := d.Wait(); err != nil {
		return err
	}
	err := ErrDialogHandled
	d.accept.Do(func() {
		err = proto.PageHandleJavaScriptDialog{Accept: true}.Call(d.s.bounded())
		if err != nil {
			err = fmt.Errorf("accept dialog: %w", err)
			return
		}
		err = d.s.settleClick()
	})
	return err
}
