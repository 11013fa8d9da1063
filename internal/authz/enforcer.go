// Engagement - Interaction Recording and Aggregate Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagement

// Package authz decides which callers may read owner-scoped and
// administrative resources, using a Casbin RBAC model with an owner relation.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/engagement/internal/config"
	"github.com/tomtom215/engagement/internal/logging"
	"github.com/tomtom215/engagement/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles. The prefix keeps role names out of the user ID space.
const (
	rolePrefix = "role:"
	RoleAdmin  = rolePrefix + "admin"
	RoleOwner  = rolePrefix + "owner"
)

// Objects and actions named in the policy.
const (
	ObjectOverview  = "overview"
	ObjectAnomalies = "anomalies"
	ActionRead      = "read"
)

// Enforcer wraps a synced Casbin enforcer.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded model and either cfg.PolicyPath or the
// embedded policy, then grants RoleAdmin to every cfg.AdminUsers entry.
func NewEnforcer(cfg *config.SecurityConfig) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{enforcer: enforcer}
	for _, id := range cfg.AdminUsers {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if _, err := e.AddRoleForUser(id, RoleAdmin); err != nil {
			return nil, err
		}
	}
	logging.Info().Int("admins", len(cfg.AdminUsers)).Msg("Authorization policy loaded")
	return e, nil
}

// loadEmbeddedPolicy parses policy CSV lines (p and g rules, # comments).
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether subject may perform action on object. owner is
// the user owning the object, or "" when ownership does not apply.
// Subjects that look like role names are always denied.
func (e *Enforcer) Enforce(subject, owner, object, action string) (bool, error) {
	if subject == "" || strings.HasPrefix(subject, rolePrefix) {
		metrics.AuthzDecisions.WithLabelValues(object, "denied").Inc()
		return false, nil
	}
	allowed, err := e.enforcer.Enforce(subject, owner, object, action)
	if err != nil {
		metrics.AuthzDecisions.WithLabelValues(object, "error").Inc()
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	metrics.AuthzDecisions.WithLabelValues(object, result).Inc()
	return allowed, nil
}

// AddRoleForUser assigns role to user.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to add role: %w", err)
	}
	return added, nil
}

// DeleteRoleForUser removes role from user.
func (e *Enforcer) DeleteRoleForUser(user, role string) (bool, error) {
	removed, err := e.enforcer.RemoveGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to remove role: %w", err)
	}
	return removed, nil
}

// GetRolesForUser returns the roles assigned to user.
func (e *Enforcer) GetRolesForUser(user string) ([]string, error) {
	return e.enforcer.GetRolesForUser(user)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
