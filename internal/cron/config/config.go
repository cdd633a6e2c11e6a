package cron_config

type Config struct {
	// Heartbeat, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// SMTP realtime poller, every ten seconds
	CronScheduleSMTPPoller string `env:"CRON_SCHEDULE_SMTP_POLLER" envDefault:"*/10 * * * * *"`
}
