package writer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lukehollenback/neutrino/constants"
	"github.com/lukehollenback/neutrino/stream"
)

const (
	Name = "≪writer≫"

	TimestampKey = "Timestamp"
	ProductKey   = "Product"
	PriceKey     = "Price"
)

var logger *log.Logger

func init() {
	logger = log.New(
		log.Writer(),
		fmt.Sprintf(constants.LogPrefixFmt, Name),
		log.Ldate|log.Ltime|log.Lmsgprefix,
	)
}

//
// Service appends every ticker message it is handed to a CSV file as a (timestamp, product, price)
// row. Other kinds of messages are ignored.
//
type Service struct {
	mu         *sync.Mutex
	path       string
	running    bool
	chMessages chan stream.Message
	chKill     chan bool
	chDone     chan struct{}
	chStopped  chan bool
	outputFile *os.File
	writer     *csv.Writer
	written    int
}

func New(path string) *Service {
	return &Service{
		mu:   &sync.Mutex{},
		path: path,
	}
}

//
// Start fires up the service. It is up to the caller to not call this multiple times in a row
// without stopping the service and waiting for full termination in between. A channel that can be
// blocked on for a "true" value, which indicates that start up is complete, is returned.
//
func (o *Service) Start() (<-chan bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil, errors.New("the writer is already running")
	}

	//
	// (Re)initialize our instance variables.
	//
	o.chMessages = make(chan stream.Message, 64)
	o.chKill = make(chan bool, 1)
	o.chDone = make(chan struct{})
	o.chStopped = make(chan bool, 1)
	o.written = 0

	//
	// Create the output CSV file and write out the header row.
	//
	var err error

	o.outputFile, err = os.Create(o.path)
	if err != nil {
		return nil, err
	}

	o.writer = csv.NewWriter(o.outputFile)

	if err := o.writer.Write([]string{TimestampKey, ProductKey, PriceKey}); err != nil {
		o.outputFile.Close()

		return nil, err
	}

	logger.Printf("Outputting CSV to %s.", o.path)

	//
	// Fire off a goroutine as the executor for the service.
	//
	o.running = true

	go o.service()

	chStarted := make(chan bool, 1)
	chStarted <- true

	logger.Print("Started.")

	return chStarted, nil
}

//
// Stop tells the service to flush and close its output file. A channel that can be blocked on for
// a "true" value, which indicates that shut down is complete, is returned.
//
func (o *Service) Stop() (<-chan bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil, errors.New("the writer is not running")
	}

	logger.Print("Stopping...")

	o.running = false
	o.chKill <- true

	return o.chStopped, nil
}

//
// Handle queues a ticker message to be written out. It is meant to be used as (or called from) a
// stream handler.
//
func (o *Service) Handle(msg stream.Message) {
	if msg.Kind != stream.Ticker {
		return
	}

	o.mu.Lock()
	running, chMessages, chDone := o.running, o.chMessages, o.chDone
	o.mu.Unlock()

	if !running {
		return
	}

	select {
	case chMessages <- msg:
	case <-chDone:
	}
}

//
// service executes the top-level logic of the service. It is intended to be spun off into its own
// goroutine when the service is started.
//
func (o *Service) service() {
	defer func() {
		o.chStopped <- true
	}()

	for {
		select {
		case msg := <-o.chMessages:
			o.write(msg)

		case <-o.chKill:
			close(o.chDone)

			//
			// Drain whatever was queued before the stop.
			//
		drain:
			for {
				select {
				case msg := <-o.chMessages:
					o.write(msg)
				default:
					break drain
				}
			}

			o.writer.Flush()

			if err := o.writer.Error(); err != nil {
				logger.Printf("Failed to flush the output file. (Error: %s)", err)
			}

			if err := o.outputFile.Close(); err != nil {
				logger.Printf("Failed to close handle on output file. (Error: %s)", err)
			}

			logger.Printf("Stopped. (Rows: %d)", o.written)

			return
		}
	}
}

func (o *Service) write(msg stream.Message) {
	price, err := msg.Price()
	if err != nil {
		logger.Printf("Skipping a ticker without a price. (Error: %s)", err)

		return
	}

	timestamp := msg.Time()
	if timestamp.IsZero() {
		timestamp = msg.ReceivedAt
	}

	err = o.writer.Write([]string{timestamp.UTC().Format(time.RFC3339Nano), msg.ProductID, price.String()})
	if err != nil {
		logger.Printf("Failed to write a row. (Error: %s)", err)

		return
	}

	o.written++
}
