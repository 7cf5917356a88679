package vfile

import "testing"

type recordingListener struct {
	pre, post []VersionEvent
}

func (l *recordingListener) PreCheckout(e VersionEvent)  { l.pre = append(l.pre, e) }
func (l *recordingListener) PostCheckout(e VersionEvent) { l.post = append(l.post, e) }

func TestListenerRegistryFiresRegisteredListeners(t *testing.T) {
	var r listenerRegistry
	l := &recordingListener{}
	id, err := r.add(l)
	if err != nil {
		t.Fatal(err)
	}

	ev := VersionEvent{Version: 1}
	r.firePreCheckout(ev)
	r.firePostCheckout(ev)

	if len(l.pre) != 1 || len(l.post) != 1 {
		t.Fatalf("expected one pre and one post event, got %d/%d", len(l.pre), len(l.post))
	}

	r.remove(id)
	r.firePreCheckout(ev)
	if len(l.pre) != 1 {
		t.Fatalf("expected removed listener to stop receiving events, got %d", len(l.pre))
	}
}

func TestRegistryInsertRemoveContains(t *testing.T) {
	ClearRegistry()
	defer ClearRegistry()

	if !registryInsert("/tmp/a.vfile") {
		t.Fatal("expected first insert to succeed")
	}
	if registryInsert("/tmp/a.vfile") {
		t.Fatal("expected second insert of same path to fail")
	}
	if !registryContains("/tmp/a.vfile") {
		t.Fatal("expected registry to contain inserted path")
	}
	registryRemove("/tmp/a.vfile")
	if registryContains("/tmp/a.vfile") {
		t.Fatal("expected registry to no longer contain removed path")
	}
}
