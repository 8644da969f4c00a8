//go:build avr

package main

const device = "uno"
