package pipeline

import (
	"context"
	"time"
)

// Waiter — прерываемое ожидание фиксированного интервала.
//
// Используется оркестратором между опросами producer'а и Invoker'ом
// между повторами. Wait возвращает nil, когда интервал прошёл целиком,
// и ошибку контекста, если ожидание прервано.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// SleepWaiter — Waiter поверх time.Timer.
type SleepWaiter struct{}

// Wait ждёт ровно d либо до отмены контекста.
func (SleepWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
