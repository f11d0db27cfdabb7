package dberr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{KindUnknown, "DatabaseError"},
		{KindNotSupported, "NotSupportedError"},
		{KindIntegrity, "IntegrityError"},
		{KindOperational, "OperationalError"},
		{KindProgramming, "ProgrammingError"},
		{KindDisconnect, "DisconnectError"},
		{KindInternal, "InternalError"},
	}
	for _, c := range cases {
		if got := c.kind.String(); got != c.want {
			t.Errorf("Kind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("duplicate key value")
	e := New(KindIntegrity, cause)
	if got := e.Error(); got != "IntegrityError: duplicate key value" {
		t.Errorf("Error() = %q", got)
	}

	annotated := e.WithStatement("INSERT INTO t VALUES (?)", []any{1})
	msg := annotated.Error()
	if !strings.Contains(msg, "[SQL: INSERT INTO t VALUES (?)]") {
		t.Errorf("message missing statement: %q", msg)
	}
	if !strings.Contains(msg, "[parameters: [1]]") {
		t.Errorf("message missing parameters: %q", msg)
	}
}

func TestWithStatementCopies(t *testing.T) {
	e := New(KindProgramming, errors.New("syntax error"))
	annotated := e.WithStatement("SELECT ?", []any{1})
	if e.Statement != "" {
		t.Error("WithStatement must not mutate the original")
	}
	if annotated.Statement != "SELECT ?" || annotated.Kind != KindProgramming {
		t.Errorf("annotated = %+v", annotated)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := New(KindOperational, fmt.Errorf("wrapped: %w", cause))
	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the root cause through the chain")
	}
}

func TestNotImplemented(t *testing.T) {
	err := NotImplemented("DoSavepoint")
	if !errors.Is(err, ErrNotSupported) {
		t.Error("NotImplemented should wrap ErrNotSupported")
	}
	if KindOf(err) != KindNotSupported {
		t.Errorf("KindOf = %v, want NotSupported", KindOf(err))
	}
	if !strings.Contains(err.Error(), "DoSavepoint") {
		t.Errorf("message should name the operation: %v", err)
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(New(KindDisconnect, errors.New("gone"))) != KindDisconnect {
		t.Error("KindOf on classified error")
	}
	wrapped := fmt.Errorf("context: %w", New(KindIntegrity, errors.New("dup")))
	if KindOf(wrapped) != KindIntegrity {
		t.Error("KindOf should see through wrapping")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("KindOf on a plain error is Unknown")
	}
	if !IsDisconnect(New(KindDisconnect, nil)) {
		t.Error("IsDisconnect on a disconnect")
	}
	if IsDisconnect(errors.New("plain")) {
		t.Error("IsDisconnect on a plain error")
	}
}

func TestFold(t *testing.T) {
	ctx := &Context{Original: errors.New("raw")}

	var order []int
	h := func(n int, mutate func(Decision) Decision) Handler {
		return func(ctx *Context, d Decision) Decision {
			order = append(order, n)
			return mutate(d)
		}
	}

	replacement := errors.New("replacement")
	d := Fold([]Handler{
		h(1, func(d Decision) Decision { d.IsDisconnect = true; return d }),
		h(2, func(d Decision) Decision { d.Replacement = replacement; return d }),
		h(3, func(d Decision) Decision { d.InvalidatePool = false; return d }),
	}, ctx, Decision{InvalidatePool: true})

	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Errorf("handlers ran in order %v", order)
	}
	if !d.IsDisconnect {
		t.Error("first handler's disconnect should survive")
	}
	if d.InvalidatePool {
		t.Error("third handler's veto should survive")
	}
	if d.Replacement != replacement {
		t.Errorf("Replacement = %v", d.Replacement)
	}
	if ctx.Chained != replacement {
		t.Error("Chained should track the replacement")
	}
}

func TestFoldNoHandlers(t *testing.T) {
	initial := Decision{IsDisconnect: true, InvalidatePool: true}
	if d := Fold(nil, &Context{}, initial); d != initial {
		t.Errorf("Fold with no handlers = %+v, want initial", d)
	}
}
