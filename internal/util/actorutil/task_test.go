package actorutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskSuccess(t *testing.T) {
	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		v := 42
		return &v, nil
	}).OnSuccess(func(v int) {
		got = v
	}).Run()
	assert.Equal(t, 42, got)
}

func TestBackgroundTaskRecover(t *testing.T) {
	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		return nil, errors.New("boom")
	}).Recover(func(err error) int {
		return -1
	}).OnSuccess(func(v int) {
		got = v
	}).Run()
	assert.Equal(t, -1, got)
}

func TestBackgroundTaskErr(t *testing.T) {
	fail := errors.New("send failed")
	var gotErr error
	succeeded := false
	NewBackgroundTaskErr(nil, func() error {
		return fail
	}).OnError(func(err error) {
		gotErr = err
	}).OnSuccess(func(struct{}) {
		succeeded = true
	}).Run()
	assert.ErrorIs(t, gotErr, fail)
	assert.False(t, succeeded)

	NewBackgroundTaskErr(nil, func() error {
		return nil
	}).OnSuccess(func(struct{}) {
		succeeded = true
	}).Run()
	assert.True(t, succeeded)
}

func TestBackgroundTaskTimeout(t *testing.T) {
	var gotErr error
	start := time.Now()
	NewBackgroundTask(nil, func() (*int, error) {
		time.Sleep(2 * time.Second)
		v := 1
		return &v, nil
	}).WithTimeout(100 * time.Millisecond).OnError(func(err error) {
		gotErr = err
	}).Run()
	assert.Error(t, gotErr)
	assert.Less(t, time.Since(start), time.Second)
}
