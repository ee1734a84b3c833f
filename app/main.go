package app

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"stream_sender/config"
	"stream_sender/journal"
	"stream_sender/logger"
	"stream_sender/stream"
	"stream_sender/transfer"
	"stream_sender/wrapper"

	"golang.org/x/time/rate"
)

func usage() {
	log.Printf("Usage of %s:\n", os.Args[0])
	log.Printf("  %s -source FILE -destination HOST:PORT\n", os.Args[0])
	flag.PrintDefaults()
}

func Start() {
	flag.Usage = usage
	flag.Parse()

	if err := config.Validate(); err != nil {
		log.Println(err)
		usage()
		os.Exit(2)
	}

	instanceLogger, err := logger.NewLogger("App")
	if err != nil {
		panic(err)
	}

	source, err := os.Open(config.GetSource())
	if err != nil {
		instanceLogger.Fatal("Error opening source", err)
	}

	handle, err := stream.New(source, config.GetCloseOnDone())
	if err != nil {
		instanceLogger.Fatal("Error wrapping source", err)
	}

	window, err := wrapper.Whole(handle)
	if err != nil {
		instanceLogger.Fatal("Error wrapping window", err)
	}

	connection, err := net.Dial("tcp", config.GetDestination())
	if err != nil {
		instanceLogger.Fatal("Error dialing destination", err)
	}
	defer connection.Close()

	options := transfer.Options{
		Limit: rate.Limit(config.GetLimit()),
	}

	if path := config.GetJournalPath(); path != "" {
		transferJournal, err := journal.Open(path)
		if err != nil {
			instanceLogger.Fatal("Error opening journal", err)
		}
		defer transferJournal.Close()

		options.Journal = transferJournal
	}

	instance := transfer.New(window, connection, options)
	defer instance.Close()

	result := <-instance.Result()

	if result.Err != nil {
		instanceLogger.Fatal("Transfer failed", result.Err)
	}

	instanceLogger.Info(fmt.Sprintf("Sent %d bytes in %s, checksum %s", result.Bytes, result.Duration, result.Checksum))
}
