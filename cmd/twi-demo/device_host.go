//go:build !avr

package main

const device = "host"
