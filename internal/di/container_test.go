package di

import (
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	c := NewContainer()

	type projectStub struct{ name string }
	c.Register("project", &projectStub{name: "p"})

	got, ok := c.Get("project").(*projectStub)
	if !ok || got.name != "p" {
		t.Fatalf("Get returned %#v", c.Get("project"))
	}
	if c.Get("missing") != nil {
		t.Error("unregistered name should yield nil")
	}
}

func TestRegisterReplaces(t *testing.T) {
	c := NewContainer()
	c.Register("llm", "first")
	c.Register("llm", "second")

	if got := c.Get("llm"); got != "second" {
		t.Errorf("Get = %v, want the later registration", got)
	}
}

func TestHasAndClear(t *testing.T) {
	c := NewContainer()
	c.Register("outline", struct{}{})

	if !c.Has("outline") {
		t.Error("Has should report the registration")
	}

	c.Clear()
	if c.Has("outline") {
		t.Error("Clear should drop every registration")
	}
	if c.Get("outline") != nil {
		t.Error("Get after Clear should yield nil")
	}
}

func TestGetContainerIsSingleton(t *testing.T) {
	if GetContainer() != GetContainer() {
		t.Error("GetContainer should return the same instance")
	}
}
