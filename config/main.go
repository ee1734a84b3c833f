package config

import (
	"errors"
	"flag"
)

var source = flag.String("source", "", "Path of the file to send")
var destination = flag.String("destination", "", "TCP address to send to")
var limit = flag.Float64("limit", 0, "Transfer rate limit in bytes per second, 0 disables")
var journalPath = flag.String("journal", "", "Path of the transfer journal database, empty disables")
var closeOnDone = flag.Bool("close-on-done", true, "Close the source once the transfer finishes")

func Validate() error {
	if *source == "" {
		return errors.New("source is required")
	}

	if *destination == "" {
		return errors.New("destination is required")
	}

	if *limit < 0 {
		return errors.New("limit must not be negative")
	}

	return nil
}

func GetSource() string {
	return *source
}

func GetDestination() string {
	return *destination
}

func GetLimit() float64 {
	return *limit
}

func GetJournalPath() string {
	return *journalPath
}

func GetCloseOnDone() bool {
	return *closeOnDone
}
