// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim updates graph parameters from their gradients.
//
// Gradients are read after Graph.Backward, which has already clipped them
// when the backend has a clipping threshold.
//
// Example:
//
//	opt := optim.NewAdam(g.Params(), optim.AdamConfig{LR: 0.01}, g.Backend())
//	defer opt.Close()
//	for range epochs {
//	    if err := g.Forward(); err != nil { ... }
//	    if err := g.Backward(loss); err != nil { ... }
//	    if err := opt.Step(); err != nil { ... }
//	}
package optim

import (
	"github.com/born-ml/exprgraph/backend"
	"github.com/born-ml/exprgraph/graph"
	"github.com/born-ml/exprgraph/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(
//	    g.Params(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	    g.Backend(),
//	)
func NewSGD(params []*graph.ParamNode, config SGDConfig, b backend.Backend) *SGD {
	return optim.NewSGD(params, config, b)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(params []*graph.ParamNode, config AdamConfig, b backend.Backend) *Adam {
	return optim.NewAdam(params, config, b)
}
