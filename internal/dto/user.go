package dto

// ── 用户模块 DTO ──

// CreateUserRequest 管理员创建用户请求
type CreateUserRequest struct {
	Name         string `json:"name"          binding:"required,min=2,max=50"`
	Email        string `json:"email"         binding:"required,email"`
	Password     string `json:"password"      binding:"required,min=8,max=64"`
	Role         string `json:"role"          binding:"required,oneof=admin quantifier member"`
	IsQuantifier bool   `json:"is_quantifier"`
}

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	Name         *string `json:"name"          binding:"omitempty,min=2,max=50"`
	Role         *string `json:"role"          binding:"omitempty,oneof=admin quantifier member"`
	IsQuantifier *bool   `json:"is_quantifier"`
}

// ListUsersRequest 用户列表查询参数
type ListUsersRequest struct {
	PaginationRequest
}
