//go:build !no_mqtt

package main

import "testing"

func TestLocalBrokerURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{":1883", "tcp://127.0.0.1:1883"},
		{"0.0.0.0:1884", "tcp://127.0.0.1:1884"},
		{"[::]:1883", "tcp://127.0.0.1:1883"},
		{"192.168.1.5:1883", "tcp://192.168.1.5:1883"},
	}
	for _, tt := range tests {
		if got := localBrokerURL(tt.listen); got != tt.want {
			t.Errorf("localBrokerURL(%q) = %q, want %q", tt.listen, got, tt.want)
		}
	}
}
