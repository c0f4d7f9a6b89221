// Package httputil builds transport-tuned *http.Client instances for the
// OAuth provider exchangers, since Gmail and Microsoft Graph tolerate very
// different connection concurrency before they start throttling.
package httputil

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig tunes the transport beneath an *http.Client.
type ClientConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseTimeout     time.Duration
	KeepAliveInterval   time.Duration
}

// NewOptimizedClient builds an *http.Client backed by a transport tuned per
// cfg, reusing idle connections across the many short requests an OAuth
// exchanger and userinfo lookup make.
func NewOptimizedClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: cfg.KeepAliveInterval}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}
	return &http.Client{Transport: transport, Timeout: cfg.ResponseTimeout}
}

// GmailClientConfig favors higher per-host concurrency: Gmail tolerates
// parallel userinfo/token calls well.
func GmailClientConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     120 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     60 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// OutlookClientConfig is more conservative: Microsoft Graph's per-app rate
// limits punish bursty concurrent connections harder than Gmail's do.
func OutlookClientConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ResponseTimeout:     45 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}
