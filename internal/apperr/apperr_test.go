package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{Validation("op", "owner id required"), http.StatusBadRequest},
		{E(CodeNotFound, "op", "missing", nil), http.StatusNotFound},
		{Remote("op", errors.New("502 from upstream")), http.StatusBadGateway},
		{Remote("op", fmt.Errorf("do request: %w", context.DeadlineExceeded)), http.StatusGatewayTimeout},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for i, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("case %d: expected %d, got %d", i, tc.want, got)
		}
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("sync company: %w", Validation("mirror.Sync", "owner id required"))
	if !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation code through wrap, got %s", CodeOf(err))
	}
	if CodeOf(errors.New("x")) != CodeInternal {
		t.Fatalf("expected internal for unknown errors")
	}
}

func TestRemoteMessageForTimeout(t *testing.T) {
	t.Parallel()

	err := Remote("matching.ParseCV", context.DeadlineExceeded)
	if got := err.Error(); got != "matching.ParseCV: remote service timed out: context deadline exceeded" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestWarningUnwraps(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	w := Warn(WarnPersistence, "profile not saved", base)
	if !errors.Is(w, base) {
		t.Fatalf("expected warning to unwrap to base error")
	}
}
