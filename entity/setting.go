package entity

// Setting keys
const (
	SettingWelcomeVideo = "welcome_video"
)
