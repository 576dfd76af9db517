// Package audio handles the robot's audio stream: conversion of 16-bit
// little-endian PCM to 8-bit offset-binary samples, a bounded pacing ring
// that smooths irregular network arrivals, and per-clip WAV containers.
package audio
