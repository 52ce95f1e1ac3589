package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"praise/backend/config"
	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/pkg/jwt"
)

// ── 测试辅助 ──

func setupAuthEnv() (*testEnv, AuthService) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret-for-auth-service",
			AccessTokenTTL:          15 * time.Minute,
			RefreshTokenTTLDefault:  24 * time.Hour,
			RefreshTokenTTLRemember: 168 * time.Hour,
		},
	}
	env := newTestEnv()
	jwtMgr := jwt.NewManager(&cfg.Auth)
	svc := NewAuthService(cfg, env.repo, jwtMgr, nil, zap.NewNop())
	return env, svc
}

func seedAccount(t *testing.T, env *testEnv, email, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("生成密码哈希失败: %v", err)
	}
	user := &model.User{
		Name:         "测试用户",
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleMember,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	return user
}

// ── Register 测试 ──

func TestRegister_Success(t *testing.T) {
	_, svc := setupAuthEnv()

	user, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "小王", Email: "wang@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register 应成功: %v", err)
	}
	if user.Role != model.RoleMember {
		t.Errorf("新用户角色应为 member，实际: %s", user.Role)
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	env, svc := setupAuthEnv()
	seedAccount(t, env, "wang@example.com", "password123")

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "小李", Email: "wang@example.com", Password: "password456",
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("期望 ErrEmailTaken，实际: %v", err)
	}
}

// ── Login 测试 ──

func TestLogin_Success(t *testing.T) {
	env, svc := setupAuthEnv()
	seedAccount(t, env, "wang@example.com", "password123")

	result, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("登录成功应返回 token 对")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env, svc := setupAuthEnv()
	seedAccount(t, env, "wang@example.com", "password123")

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "wrong-password",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	_, svc := setupAuthEnv()

	_, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "nobody@example.com", Password: "password123",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
	}
}

// ── Refresh 测试 ──

func TestRefresh_RotatesTokenPair(t *testing.T) {
	env, svc := setupAuthEnv()
	seedAccount(t, env, "wang@example.com", "password123")

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}

	result, err := svc.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh 应成功: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("刷新成功应返回新 token 对")
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	env, svc := setupAuthEnv()
	seedAccount(t, env, "wang@example.com", "password123")

	login, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 应成功: %v", err)
	}

	// access token 不能用于刷新
	if _, err := svc.Refresh(context.Background(), login.AccessToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Errorf("期望 ErrRefreshInvalid，实际: %v", err)
	}
}

// ── ChangePassword 测试 ──

func TestChangePassword_Success(t *testing.T) {
	env, svc := setupAuthEnv()
	user := seedAccount(t, env, "wang@example.com", "password123")

	err := svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
		OldPassword: "password123", NewPassword: "new-password456",
	})
	if err != nil {
		t.Fatalf("ChangePassword 应成功: %v", err)
	}

	// 旧密码失效，新密码可登录
	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "password123",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("旧密码应失效，实际: %v", err)
	}
	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Email: "wang@example.com", Password: "new-password456",
	}); err != nil {
		t.Errorf("新密码应可登录: %v", err)
	}
}

func TestChangePassword_OldPasswordWrong(t *testing.T) {
	env, svc := setupAuthEnv()
	user := seedAccount(t, env, "wang@example.com", "password123")

	err := svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "new-password456",
	})
	if !errors.Is(err, ErrOldPasswordWrong) {
		t.Errorf("期望 ErrOldPasswordWrong，实际: %v", err)
	}
}
