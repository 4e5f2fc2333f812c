package main

import (
	"testing"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/domain/charge"
	"pasarela/internal/provider"
	"pasarela/internal/provider/cobalt"
	"pasarela/internal/provider/paypal"
	"pasarela/internal/provider/yappy"
)

// TestProviderWiring checks that the three processor adapters register and
// resolve the way main wires them.
func TestProviderWiring(t *testing.T) {
	resolver := credentials.NewResolver(map[string]credentials.Company{
		"ACME": {
			Cobalt: &credentials.Cobalt{ClientID: "id", ClientSecret: "s"},
			PayPal: &credentials.PayPal{ClientID: "id", ClientSecret: "s"},
			Yappy:  &credentials.Yappy{MerchantID: "M-1", SecretKey: "s", Domain: "d"},
		},
		"SOLO-YAPPY": {
			Yappy: &credentials.Yappy{MerchantID: "M-2", SecretKey: "s", Domain: "d"},
		},
	})
	tokens := provider.NewTokenSource(time.Minute)

	registry := provider.NewRegistry()
	registry.Register(charge.MethodCobalt, cobalt.New("http://cobalt.test", time.Second, resolver, tokens))
	registry.Register(charge.MethodPayPal, paypal.New("http://paypal.test", time.Second, resolver, tokens))
	registry.Register(charge.MethodYappy, yappy.New("http://yappy.test", time.Second, resolver))

	if got := len(registry.Methods()); got != 3 {
		t.Fatalf("expected 3 registered methods, got %d", got)
	}

	for _, m := range []charge.Method{charge.MethodCobalt, charge.MethodPayPal, charge.MethodYappy} {
		c, err := registry.Client(m)
		if err != nil {
			t.Fatalf("client for %s: %v", m, err)
		}
		if c.Name() == "" {
			t.Fatalf("client for %s has no name", m)
		}
	}

	if _, err := registry.Client(charge.Method("ach")); err == nil {
		t.Fatal("unregistered method must fail to resolve")
	}

	// Company provisioning drives method support, not registration.
	if !resolver.Supports("ACME", charge.MethodCobalt) {
		t.Fatal("ACME should support cobalt")
	}
	if resolver.Supports("SOLO-YAPPY", charge.MethodCobalt) {
		t.Fatal("SOLO-YAPPY must not support cobalt")
	}
	if !resolver.Supports("SOLO-YAPPY", charge.MethodYappy) {
		t.Fatal("SOLO-YAPPY should support yappy")
	}
	if resolver.Supports("NADIE", charge.MethodYappy) {
		t.Fatal("unknown company must not support any method")
	}
}
