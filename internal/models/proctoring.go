package models

import (
	"time"

	"gorm.io/datatypes"
)

type ActivitySignalType string

const (
	SignalTabSwitch      ActivitySignalType = "tab_switch"
	SignalWindowBlur     ActivitySignalType = "window_blur"
	SignalFullscreenExit ActivitySignalType = "fullscreen_exit"
	SignalRightClick     ActivitySignalType = "right_click"
	SignalCopyPaste      ActivitySignalType = "copy_paste"
	SignalScreenshot     ActivitySignalType = "screenshot"
	SignalClientElapsed  ActivitySignalType = "client_elapsed"
)

func (t ActivitySignalType) IsValid() bool {
	switch t {
	case SignalTabSwitch, SignalWindowBlur, SignalFullscreenExit,
		SignalRightClick, SignalCopyPaste, SignalScreenshot, SignalClientElapsed:
		return true
	}
	return false
}

// ActivitySignal is a best-effort client report. Signals are recorded, never enforced.
type ActivitySignal struct {
	ID        uint               `json:"id" gorm:"primaryKey"`
	AttemptID uint               `json:"attempt_id" gorm:"not null;index"`
	Type      ActivitySignalType `json:"type" gorm:"not null;size:32;index"`

	Data     datatypes.JSON `json:"data" gorm:"type:jsonb"`
	Severity int            `json:"severity" gorm:"default:1"` // 1-5

	QuestionID *uint  `json:"question_id" gorm:"index"`
	TimeOffset int    `json:"time_offset"` // seconds from phase start, as reported by the client
	UserAgent  string `json:"user_agent" gorm:"type:text"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`

	CreatedAt time.Time `json:"created_at"`
}

func (ActivitySignal) TableName() string {
	return "activity_signals"
}
