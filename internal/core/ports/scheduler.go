package ports

type SchedulerService interface {
	Start()
	Stop()

	// ScheduleTask runs task every interval seconds. If immediate is false
	// the first run happens after the first interval has elapsed.
	ScheduleTask(interval int64, immediate bool, task func()) error
}
