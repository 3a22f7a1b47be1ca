package hal

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/f4demos/pkg/trace"
)

// rtcState lives in the backup domain. The calendar is kept as the value
// cal it had at board time at and runs freely from there.
type rtcState struct {
	initialized bool
	cfg         RTCConfig
	cal         time.Time
	at          time.Time
	weekday     Weekday
}

func (r *rtcState) reset(now time.Time) {
	*r = rtcState{
		cal:     time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		at:      now,
		weekday: Monday,
	}
}

func (r *rtcState) current(now time.Time) (time.Time, Weekday) {
	cur := r.cal.Add(now.Sub(r.at).Truncate(time.Second))
	days := int(civilDay(cur) - civilDay(r.cal))
	wd := Weekday((int(r.weekday)-1+days%7+7)%7 + 1)
	return cur, wd
}

func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

type simRTC struct{ b *SimBoard }

func (r simRTC) Init(cfg RTCConfig) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpRTCInit); err != nil {
		return err
	}
	if cfg.AsyncPrediv > 0x7F || cfg.SyncPrediv > 0x7FFF {
		return fmt.Errorf("%w: RTC prescalers %#x/%#x", ErrHardware, cfg.AsyncPrediv, cfg.SyncPrediv)
	}
	if cfg.HourFormat != Hour12 && cfg.HourFormat != Hour24 {
		return fmt.Errorf("%w: RTC hour format %d", ErrHardware, cfg.HourFormat)
	}
	b.rtc.initialized = true
	b.rtc.cfg = cfg
	return nil
}

func (r simRTC) SetTime(t RTCTime) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpRTCSetTime); err != nil {
		return err
	}
	if !b.rtc.initialized {
		return fmt.Errorf("%w: RTC not initialised", ErrNotConfigured)
	}
	hour, err := to24(b.rtc.cfg.HourFormat, t)
	if err != nil {
		return err
	}
	if t.Minutes > 59 || t.Seconds > 59 {
		return fmt.Errorf("%w: RTC time %02d:%02d:%02d", ErrHardware, t.Hours, t.Minutes, t.Seconds)
	}
	now := b.now()
	cur, wd := b.rtc.current(now)
	y, m, d := cur.Date()
	b.rtc.cal = time.Date(y, m, d, hour, int(t.Minutes), int(t.Seconds), 0, time.UTC)
	b.rtc.at = now
	b.rtc.weekday = wd
	b.record(trace.Event{Source: trace.SourceRTC, Kind: trace.KindRTCSet, Detail: b.rtc.cal.Format("time 15:04:05")})
	return nil
}

func to24(format HourFormat, t RTCTime) (int, error) {
	if format == Hour24 {
		if t.Hours > 23 {
			return 0, fmt.Errorf("%w: RTC hour %d", ErrHardware, t.Hours)
		}
		return int(t.Hours), nil
	}
	if t.Hours < 1 || t.Hours > 12 {
		return 0, fmt.Errorf("%w: RTC 12h hour %d", ErrHardware, t.Hours)
	}
	h := int(t.Hours) % 12
	if t.Meridiem == PM {
		h += 12
	}
	return h, nil
}

func (r simRTC) SetDate(d RTCDate) error {
	b := r.b
	b.mu.Lock()
	defer b.unlock()
	if err := b.fail(OpRTCSetDate); err != nil {
		return err
	}
	if !b.rtc.initialized {
		return fmt.Errorf("%w: RTC not initialised", ErrNotConfigured)
	}
	if d.Year > 99 || d.Weekday < Monday || d.Weekday > Sunday {
		return fmt.Errorf("%w: RTC date %+v", ErrHardware, d)
	}
	date := time.Date(2000+int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
	if d.Month < 1 || d.Month > 12 || date.Day() != int(d.Day) {
		return fmt.Errorf("%w: RTC date %02d-%02d-%02d", ErrHardware, d.Month, d.Day, d.Year)
	}
	now := b.now()
	cur, _ := b.rtc.current(now)
	b.rtc.cal = date.Add(time.Duration(cur.Hour())*time.Hour + time.Duration(cur.Minute())*time.Minute + time.Duration(cur.Second())*time.Second)
	b.rtc.at = now
	b.rtc.weekday = d.Weekday
	b.record(trace.Event{Source: trace.SourceRTC, Kind: trace.KindRTCSet, Detail: b.rtc.cal.Format("date 01-02-06")})
	return nil
}

func (r simRTC) Time() (RTCTime, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(OpRTCRead); err != nil {
		return RTCTime{}, err
	}
	cur, _ := b.rtc.current(b.now())
	t := RTCTime{Minutes: uint8(cur.Minute()), Seconds: uint8(cur.Second())}
	h := cur.Hour()
	if b.rtc.cfg.HourFormat == Hour24 {
		t.Hours = uint8(h)
		return t, nil
	}
	if h >= 12 {
		t.Meridiem = PM
	}
	if h%12 == 0 {
		t.Hours = 12
	} else {
		t.Hours = uint8(h % 12)
	}
	return t, nil
}

func (r simRTC) Date() (RTCDate, error) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(OpRTCRead); err != nil {
		return RTCDate{}, err
	}
	cur, wd := b.rtc.current(b.now())
	return RTCDate{
		Year:    uint8(cur.Year() % 100),
		Month:   uint8(cur.Month()),
		Day:     uint8(cur.Day()),
		Weekday: wd,
	}, nil
}
