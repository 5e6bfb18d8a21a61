package api

import "time"

// Throttle は1つの外部サービスへのリクエスト間隔を最低 interval に保ちます。
// 1つの実行経路からのみ使う前提のため排他制御はしていません。
type Throttle struct {
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewThrottle は新しいスロットルを作成します
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Wait は前回の呼び出しから interval が経過していなければ残り時間だけ待機します
func (t *Throttle) Wait() {
	if t == nil {
		return
	}
	if t.interval > 0 && !t.last.IsZero() {
		if elapsed := t.now().Sub(t.last); elapsed < t.interval {
			t.sleep(t.interval - elapsed)
		}
	}
	t.last = t.now()
}
