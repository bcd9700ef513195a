// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"sync"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// NewCommandRecorder creates a recorder of single time command buffers
// allocated from pool and submitted to queue.
func NewCommandRecorder(dev Device, pool vk.CommandPool, queue vk.Queue) *CommandRecorder {
	return &CommandRecorder{
		dev:   dev,
		pool:  pool,
		queue: queue,
	}
}

// CommandRecorder records one shot command buffers and submits them
// synchronously. Command pools and queues are externally synchronized
// objects, Record holds a lock for the whole begin-submit-wait cycle.
type CommandRecorder struct {
	mutex sync.Mutex

	dev   Device
	pool  vk.CommandPool
	queue vk.Queue
}

// Begin allocates a primary command buffer and starts recording into it.
// Every successful Begin must be followed by End.
func (r *CommandRecorder) Begin() (vk.CommandBuffer, error) {
	cmd, err := r.dev.AllocateCommandBuffer(r.pool)
	if err != nil {
		return nil, err
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}

	if err := r.dev.BeginCommandBuffer(cmd, &cbbi); err != nil {
		r.dev.FreeCommandBuffer(r.pool, cmd)
		return nil, err
	}
	return cmd, nil
}

// End finishes recording, submits the command buffer and blocks until
// the queue is idle. The command buffer is freed whatever the outcome.
func (r *CommandRecorder) End(cmd vk.CommandBuffer) error {
	defer r.dev.FreeCommandBuffer(r.pool, cmd)

	if err := r.dev.EndCommandBuffer(cmd); err != nil {
		return err
	}

	si := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}

	if err := r.dev.QueueSubmit(r.queue, []vk.SubmitInfo{si}); err != nil {
		return err
	}
	return r.dev.QueueWaitIdle(r.queue)
}

// Record runs fn against a fresh command buffer and submits what it recorded.
// If fn fails or panics the buffer is freed without being submitted.
func (r *CommandRecorder) Record(fn func(cmd vk.CommandBuffer) error) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cmd, err := r.Begin()
	if err != nil {
		return errors.Wrap(err, "begin single time commands")
	}

	pending := true
	defer func() {
		if pending {
			r.dev.FreeCommandBuffer(r.pool, cmd)
		}
	}()

	if err := fn(cmd); err != nil {
		return err
	}

	pending = false
	return errors.Wrap(r.End(cmd), "end single time commands")
}
