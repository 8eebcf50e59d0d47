/*
Package observability turns engine lifecycle hooks into logs and Prometheus metrics.
*/
package observability
