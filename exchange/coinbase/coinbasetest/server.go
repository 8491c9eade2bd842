//
// Package coinbasetest provides an in-process fake of the Coinbase Exchange (REST API and websocket
// feed) for use in tests.
//
package coinbasetest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	FeedPath = "/ws"

	cursorPrefix = "cursor-"
	loopCursor   = "cursor-loop"
)

//
// Request is a record of one request received by the fake REST API.
//
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   string
}

//
// Fault is a canned failure that the fake REST API serves in place of (or ahead of) a normal
// response. A Fault with no status only delays the normal response.
//
type Fault struct {
	Status     int
	Message    string
	RetryAfter string
	Delay      time.Duration
}

type collection struct {
	pages [][]any
	loop  bool
}

//
// Server is a fake Coinbase Exchange. The zero value is not usable; instantiate it with New.
//
type Server struct {
	mu sync.Mutex

	engine *gin.Engine
	http   *httptest.Server

	key        string
	secret     []byte
	passphrase string
	maxCandles int

	collections map[string]*collection
	resources   map[string]any
	faults      map[string][]Fault
	requests    []Request

	feed *feed
}

type Option func(*Server)

//
// WithAuth makes the server verify the signature of every REST request and of every feed
// subscription that claims to be authenticated.
//
func WithAuth(key string, secret string, passphrase string) Option {
	return func(o *Server) {
		decoded, err := base64.StdEncoding.DecodeString(secret)
		if err != nil {
			panic(fmt.Sprintf("coinbasetest: secret is not valid base64: %s", err))
		}

		o.key = key
		o.secret = decoded
		o.passphrase = passphrase
	}
}

//
// WithMaxCandles sets the number of buckets the candles endpoint is willing to return from one
// request. Requests for more are rejected the way the real exchange rejects them.
//
func WithMaxCandles(limit int) Option {
	return func(o *Server) {
		o.maxCandles = limit
	}
}

//
// New starts a fake exchange listening on a local port. Close must be called when it is no longer
// needed.
//
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)

	o := &Server{
		maxCandles:  300,
		collections: make(map[string]*collection),
		resources:   make(map[string]any),
		faults:      make(map[string][]Fault),
		feed:        newFeed(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.engine = gin.New()
	o.engine.Use(o.record, o.inject, o.authenticate)
	o.engine.GET("/products/:product/candles", o.candles)
	o.engine.GET(FeedPath, o.serveFeed)
	o.engine.NoRoute(o.lookup)

	o.http = httptest.NewServer(o.engine)

	return o
}

func (o *Server) Close() {
	o.feed.closeAll()
	o.http.Close()
}

//
// URL returns the base URL of the fake REST API.
//
func (o *Server) URL() string {
	return o.http.URL
}

//
// FeedURL returns the URL of the fake websocket feed.
//
func (o *Server) FeedURL() string {
	return "ws" + strings.TrimPrefix(o.http.URL, "http") + FeedPath
}

//
// SetPages registers a cursor-paginated collection at the provided path. Each argument is one page
// of records.
//
func (o *Server) SetPages(path string, pages ...[]any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.collections[path] = &collection{pages: pages}
}

//
// SetLoop registers a collection at the provided path whose every page hands back the provided
// records along with the very same cursor.
//
func (o *Server) SetLoop(path string, records ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.collections[path] = &collection{pages: [][]any{records}, loop: true}
}

//
// SetResource registers a single (non-paginated) JSON resource at the provided path.
//
func (o *Server) SetResource(path string, body any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.resources[path] = body
}

//
// Fail queues canned faults for the provided path. Each request to the path consumes one fault
// until the queue runs dry.
//
func (o *Server) Fail(path string, faults ...Fault) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.faults[path] = append(o.faults[path], faults...)
}

//
// Requests returns a copy of every REST request received so far, in order.
//
func (o *Server) Requests() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]Request(nil), o.requests...)
}

//
// RequestsTo returns the requests received so far for the provided path, in order.
//
func (o *Server) RequestsTo(path string) []Request {
	ret := make([]Request, 0)

	for _, v := range o.Requests() {
		if v.Path == path {
			ret = append(ret, v)
		}
	}

	return ret
}

//
// record is middleware that keeps a copy of every request that is not a feed upgrade.
//
func (o *Server) record(c *gin.Context) {
	if c.Request.URL.Path == FeedPath {
		c.Next()

		return
	}

	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	o.mu.Lock()
	o.requests = append(o.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
		Body:   string(body),
	})
	o.mu.Unlock()

	c.Next()
}

//
// inject is middleware that serves the next queued fault for the request's path, if there is one.
//
func (o *Server) inject(c *gin.Context) {
	o.mu.Lock()

	var fault *Fault

	if queue := o.faults[c.Request.URL.Path]; len(queue) > 0 {
		fault = &queue[0]
		o.faults[c.Request.URL.Path] = queue[1:]
	}

	o.mu.Unlock()

	if fault == nil {
		c.Next()

		return
	}

	if fault.Delay > 0 {
		select {
		case <-time.After(fault.Delay):
		case <-c.Request.Context().Done():
			c.Abort()

			return
		}
	}

	if fault.Status == 0 {
		c.Next()

		return
	}

	if fault.RetryAfter != "" {
		c.Header("Retry-After", fault.RetryAfter)
	}

	message := fault.Message
	if message == "" {
		message = http.StatusText(fault.Status)
	}

	c.AbortWithStatusJSON(fault.Status, gin.H{"message": message})
}

//
// authenticate is middleware that verifies request signatures whenever the server was configured
// with a key set.
//
func (o *Server) authenticate(c *gin.Context) {
	if o.secret == nil || c.Request.URL.Path == FeedPath {
		c.Next()

		return
	}

	header := c.Request.Header

	if header.Get("CB-ACCESS-KEY") != o.key || header.Get("CB-ACCESS-PASSPHRASE") != o.passphrase {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid API key"})

		return
	}

	body, _ := io.ReadAll(c.Request.Body)
	message := header.Get("CB-ACCESS-TIMESTAMP") + c.Request.Method + c.Request.URL.RequestURI() + string(body)

	if !o.validSignature(message, header.Get("CB-ACCESS-SIGN")) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid signature"})

		return
	}

	c.Next()
}

func (o *Server) validSignature(message string, signature string) bool {
	mac := hmac.New(sha256.New, o.secret)
	mac.Write([]byte(message))

	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

//
// lookup serves registered collections and resources by exact path.
//
func (o *Server) lookup(c *gin.Context) {
	path := c.Request.URL.Path

	o.mu.Lock()
	coll, isCollection := o.collections[path]
	resource, isResource := o.resources[path]
	o.mu.Unlock()

	switch {
	case isCollection:
		o.page(c, coll)
	case isResource:
		c.JSON(http.StatusOK, resource)
	default:
		c.JSON(http.StatusNotFound, gin.H{"message": "NotFound"})
	}
}

//
// page serves one page of a collection, selected by the "after" query parameter.
//
func (o *Server) page(c *gin.Context, coll *collection) {
	if coll.loop {
		c.Header("CB-AFTER", loopCursor)
		c.JSON(http.StatusOK, coll.pages[0])

		return
	}

	index := 0

	if after := c.Query("after"); after != "" {
		if _, err := fmt.Sscanf(after, cursorPrefix+"%d", &index); err != nil || index <= 0 || index > len(coll.pages) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid cursor"})

			return
		}
	}

	if index >= len(coll.pages) {
		c.JSON(http.StatusOK, []any{})

		return
	}

	if index+1 < len(coll.pages) {
		c.Header("CB-AFTER", fmt.Sprintf("%s%d", cursorPrefix, index+1))
	}

	if index > 0 {
		c.Header("CB-BEFORE", fmt.Sprintf("%s%d", cursorPrefix, index-1))
	}

	records := coll.pages[index]
	if records == nil {
		records = []any{}
	}

	c.JSON(http.StatusOK, records)
}
