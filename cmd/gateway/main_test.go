package main

import (
	"testing"

	"github.com/umucyo/guarantee-gateway/internal/app"
	_ "github.com/umucyo/guarantee-gateway/testing"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode")
	}
	main()
}
