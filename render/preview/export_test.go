package preview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type recordingSink struct {
	calls     []string
	failShow  int
	panicShow int
	cancel    context.CancelFunc
	cancelAt  int
	aborted   error
}

func (s *recordingSink) Begin(total int) error {
	s.calls = append(s.calls, fmt.Sprintf("begin %d", total))
	return nil
}

func (s *recordingSink) Show(_ context.Context, p Page) error {
	s.calls = append(s.calls, fmt.Sprintf("show %d", p.Number))
	if p.Number == s.failShow {
		return errors.New("layout failed")
	}
	if p.Number == s.panicShow {
		panic("boom")
	}
	return nil
}

func (s *recordingSink) Capture(_ context.Context, p Page) error {
	s.calls = append(s.calls, fmt.Sprintf("capture %d", p.Number))
	if s.cancel != nil && p.Number == s.cancelAt {
		s.cancel()
	}
	return nil
}

func (s *recordingSink) End() error {
	s.calls = append(s.calls, "end")
	return nil
}

func (s *recordingSink) Abort(err error) {
	s.calls = append(s.calls, "abort")
	s.aborted = err
}

func testPages(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i] = Page{Index: i, Number: i + 1}
	}
	return pages
}

func TestExport_Order(t *testing.T) {
	sink := &recordingSink{}
	if err := Export(context.Background(), testPages(3), sink); err != nil {
		t.Fatal(err)
	}
	want := "begin 3,show 1,capture 1,show 2,capture 2,show 3,capture 3,end"
	if got := strings.Join(sink.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestExport_Failure(t *testing.T) {
	sink := &recordingSink{failShow: 2}
	err := Export(context.Background(), testPages(3), sink)
	if err == nil || !strings.Contains(err.Error(), "layout failed") {
		t.Fatalf("error = %v", err)
	}
	want := "begin 3,show 1,capture 1,show 2,abort"
	if got := strings.Join(sink.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if sink.aborted == nil {
		t.Error("abort got no error")
	}
}

func TestExport_Panic(t *testing.T) {
	sink := &recordingSink{panicShow: 1}
	err := Export(context.Background(), testPages(2), sink)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("error = %v", err)
	}
	if sink.calls[len(sink.calls)-1] != "abort" {
		t.Errorf("calls = %v", sink.calls)
	}
}

func TestExport_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{cancel: cancel, cancelAt: 1}

	err := Export(ctx, testPages(3), sink)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	want := "begin 3,show 1,capture 1,abort"
	if got := strings.Join(sink.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
}

func TestExport_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	if err := Export(ctx, testPages(1), sink); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink was used: %v", sink.calls)
	}
}
