package app

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

const (
	pinMin = 100000
	pinMax = 999999
	// maxPinAttempts bounds rejection sampling when the id space is nearly full.
	maxPinAttempts = 10000
)

// randomPins returns a generator of 6-digit numeric join codes.
func randomPins() func() string {
	var mu sync.Mutex
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return strconv.Itoa(pinMin + rnd.Intn(pinMax-pinMin+1))
	}
}
