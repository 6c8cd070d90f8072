package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now() dalam UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock selalu balikin waktu yang sama, untuk test
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
