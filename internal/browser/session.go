package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"
	"go.uber.org/zap"
)

// State is the furthest point a scenario's session has reached.
type State string

const (
	StateStart       State = "start"
	StateNavigating  State = "navigating"
	StateFormFilled  State = "form_filled"
	StateSubmitted   State = "submitted"
	StateNavigated   State = "navigated"
	StateDialogShown State = "dialog_shown"
	StateTimedOut    State = "timed_out"
)

// Session is one scenario's isolated browser context. Actions are sequential;
// a Session must not be used from more than one goroutine.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	log     *zap.Logger

	mu           sync.Mutex
	state        State
	expect       *DialogExpectation
	unexpected   *Dialog
	dialogOpened chan struct{}
	pendingClick chan error

	record bool
	frames []Frame
	cursor CursorPosition
}

func newSession(ctx context.Context, cancel context.CancelFunc, b *rod.Browser, page *rod.Page, opts Options, log *zap.Logger) *Session {
	s := &Session{
		ctx:          ctx,
		cancel:       cancel,
		browser:      b,
		page:         page.Context(ctx),
		timeout:      opts.ActionTimeout,
		log:          log,
		state:        StateStart,
		dialogOpened: make(chan struct{}, 1),
		record:       opts.Record,
		cursor:       CursorPosition{X: opts.Width / 2, Y: opts.Height / 2, State: CursorDefault},
	}

	// Subscribing enables the Page domain; the loop ends with the session context.
	wait := s.page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		s.onDialog(e)
	})
	go wait()

	return s
}

// Close disposes of the incognito context. Safe on a nil Session.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.cancel()
	// The session context is gone, so dispose through the root connection.
	_ = s.browser.Context(context.Background()).Close()
}

// State returns the furthest state reached. A nil Session is at StateStart.
func (s *Session) State() State {
	if s == nil {
		return StateStart
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState records a state transition.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug("state", zap.String("state", string(st)))
}

func (s *Session) bounded() *rod.Page {
	return s.page.Timeout(s.timeout)
}

// detached outlives the scenario deadline so a timed-out scenario can still
// be photographed before Close.
func (s *Session) detached() *rod.Page {
	return s.page.Context(context.WithoutCancel(s.ctx)).Timeout(s.timeout)
}

// fail prefers a surfaced unexpected dialog over whatever the dialog caused.
func (s *Session) fail(op, target string, err error) error {
	if d := s.UnexpectedDialog(); d != nil {
		return d.unexpected()
	}
	if target == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s %s: %w", op, target, err)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(url string) error {
	s.SetState(StateNavigating)
	p := s.bounded()
	if err := p.Navigate(url); err != nil {
		return s.fail("navigate", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return s.fail("wait load", url, err)
	}
	s.log.Debug("navigated", zap.String("url", url))
	s.capture()
	return nil
}

// WaitElement waits, bounded, for selector to exist.
func (s *Session) WaitElement(selector string) (*rod.Element, error) {
	el, err := s.bounded().Element(selector)
	if err != nil {
		return nil, s.fail("wait for", selector, err)
	}
	return el.CancelTimeout().Timeout(s.timeout), nil
}

// Fill awaits the input, clears it and types value. An empty value leaves
// the field empty.
func (s *Session) Fill(selector, value string) error {
	el, err := s.WaitElement(selector)
	if err != nil {
		return err
	}
	s.moveCursor(el, CursorText, false)
	if err := el.SelectAllText(); err != nil {
		return s.fail("select text in", selector, err)
	}
	if value == "" {
		err = s.page.Keyboard.Type(input.Backspace)
	} else {
		err = el.Input(value)
	}
	if err != nil {
		return s.fail("fill", selector, err)
	}
	s.SetState(StateFormFilled)
	s.capture()
	return nil
}

// SelectOption picks the option whose text matches value.
func (s *Session) SelectOption(selector, value string) error {
	el, err := s.WaitElement(selector)
	if err != nil {
		return err
	}
	s.moveCursor(el, CursorPointer, false)
	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return s.fail("select option in", selector, err)
	}
	s.capture()
	return nil
}

// Click awaits the element and clicks it. A click that raises a native dialog
// cannot complete until the dialog is handled, so Click returns as soon as
// the dialog opens and the click settles when the dialog is accepted.
func (s *Session) Click(selector string) error {
	el, err := s.WaitElement(selector)
	if err != nil {
		return err
	}
	s.moveCursor(el, CursorPointer, true)

	select {
	case <-s.dialogOpened:
	default:
	}

	done := make(chan error, 1)
	go func() { done <- el.Click(proto.InputMouseButtonLeft, 1) }()

	select {
	case err := <-done:
		if err != nil {
			return s.fail("click", selector, err)
		}
		s.capture()
		return nil
	case <-s.dialogOpened:
		s.mu.Lock()
		s.pendingClick = done
		s.mu.Unlock()
		return nil
	case <-s.ctx.Done():
		return s.fail("click", selector, s.ctx.Err())
	}
}

// Submit clicks a submit control and marks the form as submitted.
func (s *Session) Submit(selector string) error {
	if err := s.Click(selector); err != nil {
		return err
	}
	s.SetState(StateSubmitted)
	return nil
}

// settleClick waits for a click held by a dialog to finish.
func (s *Session) settleClick() error {
	s.mu.Lock()
	done := s.pendingClick
	s.pendingClick = nil
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("click did not settle after dialog: %w", context.DeadlineExceeded)
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// URL returns the current location. It reads target info rather than
// evaluating script, so it works while a dialog blocks the page.
func (s *Session) URL() (string, error) {
	info, err := s.bounded().Info()
	if err != nil {
		return "", s.fail("read url", "", err)
	}
	return info.URL, nil
}

// WaitURL waits until the current location equals target. It returns the
// last observed location with context.DeadlineExceeded if the bound elapses.
func (s *Session) WaitURL(target string) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var current string
	err := utils.Retry(ctx, utils.BackoffSleeper(20*time.Millisecond, 500*time.Millisecond, nil), func() (bool, error) {
		info, err := s.page.Context(ctx).Info()
		if err != nil {
			return false, nil
		}
		current = info.URL
		return current == target, nil
	})
	if err != nil {
		if d := s.UnexpectedDialog(); d != nil {
			return current, d.unexpected()
		}
		return current, err
	}
	s.capture()
	return current, nil
}

// Visibility describes how an element renders.
type Visibility struct {
	Visible bool
	Width   float64
	Height  float64
}

// Inspect waits, bounded, for selector and reports whether it is visible
// and how large its rendered box is.
func (s *Session) Inspect(selector string) (Visibility, error) {
	el, err := s.WaitElement(selector)
	if err != nil {
		return Visibility{}, err
	}
	visible, err := el.Visible()
	if err != nil {
		return Visibility{}, s.fail("check visibility of", selector, err)
	}
	v := Visibility{Visible: visible}
	if !visible {
		return v, nil
	}
	shape, err := el.Shape()
	if err != nil {
		return v, s.fail("measure", selector, err)
	}
	if box := shape.Box(); box != nil {
		v.Width, v.Height = box.Width, box.Height
	}
	return v, nil
}

// Count returns how many elements currently match selector, without waiting.
func (s *Session) Count(selector string) (int, error) {
	els, err := s.bounded().Elements(selector)
	if err != nil {
		return 0, s.fail("query", selector, err)
	}
	return len(els), nil
}

// Text awaits selector and returns its text content.
func (s *Session) Text(selector string) (string, error) {
	el, err := s.WaitElement(selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", s.fail("read text of", selector, err)
	}
	return text, nil
}

// EvalString runs a page function that returns a string.
func (s *Session) EvalString(js string, args ...interface{}) (string, error) {
	res, err := s.bounded().Eval(js, args...)
	if err != nil {
		return "", s.fail("eval", "", err)
	}
	return res.Value.String(), nil
}

// Screenshot captures the viewport as PNG. It works after the scenario
// deadline has passed.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.detached().Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

// capture appends a frame when recording. Failures only cost a frame.
func (s *Session) capture() {
	if !s.record {
		return
	}
	data, err := s.Screenshot()
	if err != nil {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	s.mu.Lock()
	s.frames = append(s.frames, Frame{Image: img, Cursor: s.cursor})
	s.cursor.Click = false
	s.mu.Unlock()
}

func (s *Session) moveCursor(el *rod.Element, state CursorState, click bool) {
	if !s.record {
		return
	}
	x, y, err := elementCenter(el)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.cursor = CursorPosition{X: x, Y: y, State: state, Click: click}
	s.mu.Unlock()
}

// Frames returns the recorded frames.
func (s *Session) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

func elementCenter(el *rod.Element) (int, int, error) {
	shape, err := el.Shape()
	if err != nil {
		return 0, 0, err
	}
	if len(shape.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no shape")
	}
	q := shape.Quads[0]
	return int((q[0] + q[2] + q[4] + q[6]) / 4), int((q[1] + q[3] + q[5] + q[7]) / 4), nil
}
