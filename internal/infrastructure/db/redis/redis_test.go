package redis

import (
	"testing"
	"time"
)

func TestConfigOptions(t *testing.T) {
	opts, err := Config{Addr: "cache:6380", Password: "pw", DB: 2}.options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.DialTimeout != defaultTimeout {
		t.Fatalf("expected default timeout, got %v", opts.DialTimeout)
	}

	opts, err = Config{Addr: "redis://:secret@redis.internal:6379/4", Password: "ignored", Timeout: time.Second}.options()
	if err != nil {
		t.Fatalf("options from url: %v", err)
	}
	if opts.Addr != "redis.internal:6379" || opts.Password != "secret" || opts.DB != 4 {
		t.Fatalf("url not applied: %+v", opts)
	}
	if opts.ReadTimeout != time.Second {
		t.Fatalf("timeout not applied: %v", opts.ReadTimeout)
	}

	if _, err := (Config{Addr: "redis://host/notanumber"}).options(); err == nil {
		t.Fatalf("expected error for bad db in url")
	}
}
