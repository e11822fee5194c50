package config

type WorkerKeyStruct struct {
	PersistAnswersQueue    string
	PersistMonitoringQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:    "persist_answers_queue",
	PersistMonitoringQueue: "persist_monitoring_queue",
}
