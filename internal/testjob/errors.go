package testjob

import "errors"

var (
	// ErrJobNotFound — задача с таким ID не найдена.
	ErrJobNotFound = errors.New("test job not found")

	// ErrRunnerClosed — раннер закрыт и не принимает новые задачи.
	ErrRunnerClosed = errors.New("test job runner closed")

	// ErrTenantRequired — не указан tenant.
	ErrTenantRequired = errors.New("tenant_id is required")

	// ErrDomainRequired — не указан домен для smoke-теста.
	ErrDomainRequired = errors.New("domain is required for smoke test")
)
