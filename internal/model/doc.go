// Package model holds the build and project entities and the build lifecycle.
//
// A build is created PENDING, moves to RUNNING when execution starts and ends
// in SUCCESS or FAILED. Terminal builds never change status again.
package model
