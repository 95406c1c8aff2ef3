package delaytail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	g := NewGomegaWithT(t)
	for op, want := range map[fsnotify.Op]EventKind{
		fsnotify.Write:                   EventGrew,
		fsnotify.Create:                  EventGrew,
		fsnotify.Remove:                  EventRemoved,
		fsnotify.Rename:                  EventRemoved,
		fsnotify.Write | fsnotify.Remove: EventRemoved,
	} {
		kind, ok := classify(op)
		g.Expect(ok).To(BeTrue(), op.String())
		g.Expect(kind).To(Equal(want), op.String())
	}
	_, ok := classify(fsnotify.Chmod)
	g.Expect(ok).To(BeFalse())
}

func TestWatcherReportsGrowthAndRemoval(t *testing.T) {
	g := NewGomegaWithT(t)
	path := filepath.Join(t.TempDir(), "src")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

	w, err := NewWatcher(path, 4, nil)
	g.Expect(err).ToNot(HaveOccurred())
	defer w.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	g.Expect(err).ToNot(HaveOccurred())
	_, err = f.WriteString("line\n")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.Close()).To(Succeed())

	g.Eventually(w.Events()).Should(Receive(Equal(Event{Kind: EventGrew, Path: path})))

	g.Expect(os.Remove(path)).To(Succeed())
	g.Eventually(w.Events()).Should(Receive(HaveField("Kind", EventRemoved)))
}

func TestWatcherClose(t *testing.T) {
	g := NewGomegaWithT(t)
	path := filepath.Join(t.TempDir(), "src")
	g.Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())

	w, err := NewWatcher(path, 0, nil)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(cap(w.events)).To(Equal(DefaultQueueSize))
	g.Expect(w.Close()).To(Succeed())
	g.Expect(w.Close()).To(Succeed())
	g.Eventually(w.Events()).Should(BeClosed())
}

func TestWatcherMissingPath(t *testing.T) {
	g := NewGomegaWithT(t)
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), 1, nil)
	g.Expect(err).To(MatchError(ContainSubstring("could not watch")))
}

func newQueueOnlyWatcher(size int) *Watcher {
	return &Watcher{
		events: make(chan Event, size),
		done:   make(chan struct{}),
		log:    zap.NewNop(),
	}
}

func TestSendBlocksWhenQueueIsFull(t *testing.T) {
	g := NewGomegaWithT(t)
	w := newQueueOnlyWatcher(1)
	first := Event{Kind: EventGrew, Path: "/a"}
	second := Event{Kind: EventGrew, Path: "/b"}
	g.Expect(w.send(first)).To(BeTrue())

	sent := make(chan bool, 1)
	go func() { sent <- w.send(second) }()
	g.Consistently(sent, "100ms").ShouldNot(Receive())

	g.Expect(w.events).To(Receive(Equal(first)))
	g.Eventually(sent).Should(Receive(BeTrue()))
	g.Expect(w.events).To(Receive(Equal(second)))
}

func TestSendGivesUpOnClose(t *testing.T) {
	g := NewGomegaWithT(t)
	w := newQueueOnlyWatcher(1)
	g.Expect(w.send(Event{Kind: EventGrew})).To(BeTrue())

	sent := make(chan bool, 1)
	go func() { sent <- w.send(Event{Kind: EventGrew}) }()
	g.Consistently(sent, "50ms").ShouldNot(Receive())

	close(w.done)
	g.Eventually(sent).Should(Receive(BeFalse()))
	g.Expect(w.events).To(HaveLen(1))
}

func TestOverflowBecomesOneGrewEvent(t *testing.T) {
	g := NewGomegaWithT(t)
	w := newQueueOnlyWatcher(4)

	g.Expect(w.handleError(fsnotify.ErrEventOverflow, "/src")).To(BeTrue())
	g.Expect(w.events).To(HaveLen(1))
	g.Expect(w.events).To(Receive(Equal(Event{Kind: EventGrew, Path: "/src"})))

	g.Expect(w.handleError(errors.New("boom"), "/src")).To(BeTrue())
	g.Expect(w.events).To(BeEmpty())

	close(w.done)
	w.events <- Event{}
	w.events <- Event{}
	w.events <- Event{}
	w.events <- Event{}
	g.Expect(w.handleError(fsnotify.ErrEventOverflow, "/src")).To(BeFalse())
}
