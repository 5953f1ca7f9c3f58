package redisx

import "time"

const (
	// Checkout guard per user: lock:checkout:{user_id} -> owner token
	KeyCheckoutLock = "lock:checkout:%s"
)

var TTLCheckoutLock = 30 * time.Second
