package driver

import (
	"fmt"
	"sync"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/browser"
)

// fakePage is an in-memory delivery.Page. Selectors in visible are present;
// errs queues failures per "op:target" and reveals makes a selector appear
// once another is clicked.
type fakePage struct {
	mu       sync.Mutex
	url      string
	visible  map[string]bool
	reveals  map[string]string
	errs     map[string][]error
	fills    map[string]string
	clicks   []string
	navs     []string
	state    *delivery.BrowserState
	restored *delivery.BrowserState
}

func newFakePage(selectors ...string) *fakePage {
	f := &fakePage{
		visible: make(map[string]bool),
		reveals: make(map[string]string),
		errs:    make(map[string][]error),
		fills:   make(map[string]string),
	}
	for _, s := range selectors {
		f.visible[s] = true
	}
	return f
}

// failNext queues err for the next n calls of op on target
func (f *fakePage) failNext(op, target string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.errs[op+":"+target] = append(f.errs[op+":"+target], err)
	}
}

func (f *fakePage) pop(op, target string) error {
	key := op + ":" + target
	queue := f.errs[key]
	if len(queue) == 0 {
		return nil
	}
	f.errs[key] = queue[1:]
	return queue[0]
}

func (f *fakePage) missing(selector string) error {
	return fmt.Errorf("%w: %s", browser.ErrElementTimeout, selector)
}

func (f *fakePage) Navigate(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navs = append(f.navs, url)
	if err := f.pop("navigate", url); err != nil {
		return err
	}
	f.url = url
	return nil
}

func (f *fakePage) URL() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakePage) Click(selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop("click", selector); err != nil {
		return err
	}
	if !f.visible[selector] {
		return f.missing(selector)
	}
	f.clicks = append(f.clicks, selector)
	if next, ok := f.reveals[selector]; ok {
		f.visible[next] = true
	}
	return nil
}

func (f *fakePage) Fill(selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop("fill", selector); err != nil {
		return err
	}
	if !f.visible[selector] {
		return f.missing(selector)
	}
	f.fills[selector] = value
	return nil
}

func (f *fakePage) WaitVisible(selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop("wait", selector); err != nil {
		return err
	}
	if !f.visible[selector] {
		return f.missing(selector)
	}
	return nil
}

func (f *fakePage) Exists(selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[selector], nil
}

func (f *fakePage) Text(selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.visible[selector] {
		return "", f.missing(selector)
	}
	return selector, nil
}

func (f *fakePage) Snapshot() (*delivery.BrowserState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == nil {
		return &delivery.BrowserState{}, nil
	}
	return f.state, nil
}

func (f *fakePage) Restore(state *delivery.BrowserState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pop("restore", ""); err != nil {
		return err
	}
	f.restored = state
	return nil
}

func (f *fakePage) Screenshot() ([]byte, error) {
	return []byte("png"), nil
}

func (f *fakePage) clicked(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == selector {
			n++
		}
	}
	return n
}

var _ delivery.Page = (*fakePage)(nil)
