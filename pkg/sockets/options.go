package sockets

import "time"

func WithPingIntervalSec(p int) func(*Hub) {
	return func(h *Hub) {
		h.pingIntervalSecs = p
	}
}

func WithWriteTimeout(d time.Duration) func(*Hub) {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

func OnError(f func(error)) func(*Hub) {
	return func(h *Hub) {
		h.onError = f
	}
}

func OnConnected(f func(remoteAddr string)) func(*Hub) {
	return func(h *Hub) {
		h.onConnected = f
	}
}
