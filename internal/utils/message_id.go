package utils

import (
	"crypto/sha256"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const messageIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateMessageID builds an RFC 5322 Message-ID under domain. The optional
// key (an alert trigger, a simulation uid) is folded in as a short hash so
// that related mails can be recognised in a mailbox.
func GenerateMessageID(domain, key string) string {
	id, err := gonanoid.Generate(messageIDAlphabet, 12)
	if err != nil {
		panic(err)
	}

	var hashComponent string
	if key != "" {
		hash := sha256.Sum256([]byte(key))
		hashComponent = fmt.Sprintf(".%x", hash[:4])
	}

	return fmt.Sprintf("<%d.%s%s@%s>", time.Now().UnixMicro(), id, hashComponent, domain)
}
