package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutIsAnAssertion(t *testing.T) {
	a := Assertf("url", "http://localhost:3000/catalog", "http://localhost:3000/login", "")
	err := fmt.Errorf("login: %w", Timeout(a, context.DeadlineExceeded))

	var timeout *TimeoutFailure
	require.ErrorAs(t, err, &timeout)

	var assertion *AssertionFailure
	require.ErrorAs(t, err, &assertion)
	assert.Equal(t, "url", assertion.Check)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAssertionMessage(t *testing.T) {
	a := Assertf("dialog", `message containing "All fields are required!"`, `"nope"`, "on %s", "/login")
	assert.Equal(t, `dialog: expected message containing "All fields are required!", got "nope" (on /login)`, a.Error())

	bare := Assertf("visible", "#user > span visible", "", "")
	assert.Equal(t, "visible: expected #user > span visible", bare.Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, LabelNone},
		{"assertion", Assertf("url", "a", "b", ""), LabelAssertion},
		{"timeout", Timeout(Assertf("url", "a", "", ""), nil), LabelTimeout},
		{"wrapped dialog", fmt.Errorf("submit: %w", &UnexpectedDialog{Type: "alert", Message: "boom"}), LabelUnexpectedDialog},
		{"raw deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), LabelTimeout},
		{"cancelled", context.Canceled, LabelCancelled},
		{"engine", errors.New("websocket closed"), LabelEngine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
