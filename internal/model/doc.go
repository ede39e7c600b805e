// Package model defines domain data structures used across the service:
// stored artifacts, format selectors, video metadata projections, playlist
// entities and the reaper state enum.
package model
