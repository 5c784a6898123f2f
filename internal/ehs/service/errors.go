package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
)

// 服务层错误分类，handler 用 errors.Is 映射为 HTTP 状态
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrBusinessRule = errors.New("business rule violated")
)

// ValidationError 请求数据不合法，Message 直接返回给调用方
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RuleError 状态机或业务约束拒绝了操作
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func (e *RuleError) Is(target error) bool { return target == ErrBusinessRule }

// NotFoundError 资源不存在，Message 形如 "Safety plan not found"
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func invalid(msg string, details ...string) error {
	return &ValidationError{Message: msg, Details: details}
}

func rule(msg string) error {
	return &RuleError{Message: msg}
}

// notFound 将仓库的 ErrNotFound 转换为带资源名的错误，其他错误原样包装
func notFound(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: resource + " not found"}
	}
	return fmt.Errorf("load %s: %w", strings.ToLower(resource), err)
}

// PublicMessage 可以返回给客户端的错误文本；内部错误返回 fallback
func PublicMessage(err error, fallback string) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	var r *RuleError
	if errors.As(err, &r) {
		return r.Message
	}
	var n *NotFoundError
	if errors.As(err, &n) {
		return n.Message
	}
	return fallback
}

// ErrorDetails 校验错误的明细
func ErrorDetails(err error) []string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Details
	}
	return nil
}
