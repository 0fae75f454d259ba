package di

import (
	"reflect"
	"testing"
)

type greeter struct{ name string }

func TestRegisterAndResolve(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceHandler, &greeter{name: "a"})

	g, err := Resolve[*greeter](c, ServiceHandler)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if g.name != "a" {
		t.Errorf("name = %q", g.name)
	}

	if _, err := Resolve[*greeter](c, ServiceLLM); err == nil {
		t.Error("expected error for unregistered service")
	}
	if _, err := Resolve[string](c, ServiceHandler); err == nil {
		t.Error("expected error for wrong type")
	}
}

func TestMissingAndNames(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceLLM, 1)
	c.Register(ServiceConfig, 2)

	if got := c.Missing(ServiceConfig, ServiceHandler, ServiceLLM); !reflect.DeepEqual(got, []string{ServiceHandler}) {
		t.Errorf("Missing = %v", got)
	}
	if got := c.GetNames(); !reflect.DeepEqual(got, []string{ServiceConfig, ServiceLLM}) {
		t.Errorf("GetNames = %v", got)
	}

	c.Clear()
	if c.Has(ServiceLLM) {
		t.Error("Clear should remove all services")
	}
}

func TestGetContainerIsSingleton(t *testing.T) {
	if GetContainer() != GetContainer() {
		t.Fatal("GetContainer should return the same instance")
	}
}
