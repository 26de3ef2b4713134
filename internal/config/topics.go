package config

const (
	// TopicDocumentIndexed carries one event per successfully indexed document.
	TopicDocumentIndexed = "veritas.document.indexed"

	// TopicScrapingETL is the NSQ topic for queued ETL runs over a links CSV.
	TopicScrapingETL = "veritas.scraping.etl"

	// ChannelETLWorker is the consumer channel for ETL runs.
	ChannelETLWorker = "etl-worker"
)
