package models

import (
	"time"

	"github.com/lib/pq"
)

// Message is the log of every consumed message, keyed by message id.
type Message struct {
	ID                 uint           `gorm:"column:id;primaryKey;autoIncrement"`
	UID                string         `gorm:"column:uid;type:varchar(63);uniqueIndex;not null"`
	Type               string         `gorm:"column:type_id;type:varchar(15);index;not null"`
	UserID             string         `gorm:"column:user_id;type:varchar(63)"`
	AppID              string         `gorm:"column:app_id;type:varchar(63)"`
	ProducerID         string         `gorm:"column:producer_id;type:varchar(63)"`
	ProducerVersion    string         `gorm:"column:producer_version;type:varchar(31)"`
	CorrelationIDs     pq.StringArray `gorm:"column:correlation_ids;type:text[]"`
	Timestamp          *time.Time     `gorm:"column:timestamp;type:timestamp"`
	TimestampRaw       string         `gorm:"column:timestamp_raw;type:varchar(63)"`
	TimestampPrecision string         `gorm:"column:timestamp_precision;type:varchar(7)"`
	Headers            JSONMap        `gorm:"column:headers;type:jsonb"`
	ContentEncoding    string         `gorm:"column:content_encoding;type:varchar(31)"`
	ContentType        string         `gorm:"column:content_type;type:varchar(63)"`
	Content            string         `gorm:"column:content;type:text"`
	ProcessingError    string         `gorm:"column:processing_error;type:text"`
	CreatedAt          time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (Message) TableName() string {
	return "tbl_message"
}

// MessageEmailStats accounts for one processed email batch. Stage counters
// are mutually exclusive: a line counted at one stage is never counted at a
// later one.
type MessageEmailStats struct {
	ID                   uint       `gorm:"column:id;primaryKey;autoIncrement"`
	EmailUID             uint32     `gorm:"column:email_id;index;not null"`
	ArrivalDate          *time.Time `gorm:"column:arrival_date;type:timestamp"`
	DispatchDate         *time.Time `gorm:"column:dispatch_date;type:timestamp"`
	Incoming             int        `gorm:"column:incoming"`
	ErrorsDecodingBase64 int        `gorm:"column:errors_decoding_base64"`
	ErrorsDecodingJSON   int        `gorm:"column:errors_decoding_json"`
	ErrorsEncodingAMQP   int        `gorm:"column:errors_encoding_ampq"`
	Excluded             int        `gorm:"column:excluded"`
	Outgoing             int        `gorm:"column:outgoing"`
	OutgoingByType       CountMap   `gorm:"column:outgoing_by_type;type:jsonb"`
	CreatedAt            time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (MessageEmailStats) TableName() string {
	return "tbl_message_email_stats"
}
