package errors

// 发现搜索服务错误码 (service 21)

func init() {
	RegisterService(ServiceDiscovery, "discovery-search")
}

var (
	// ErrInvalidEntityID indicates a non-UUID entity id.
	ErrInvalidEntityID = NewRequestError(ServiceDiscovery, 1).
		Message("Invalid entity id", "实体ID无效").
		MustBuild()

	// ErrAdminTokenInvalid indicates a missing or wrong admin token.
	ErrAdminTokenInvalid = NewPermissionError(ServiceDiscovery, 1).
		Message("Invalid admin token", "管理令牌无效").
		MustBuild()

	// ErrEntityNotFound indicates the entity does not exist.
	ErrEntityNotFound = NewNotFoundError(ServiceDiscovery, 1).
		Message("Entity not found", "实体不存在").
		MustBuild()

	// ErrReindexAlreadyRunning indicates another reindex holds the lock.
	ErrReindexAlreadyRunning = NewConflictError(ServiceDiscovery, 1).
		Message("Reindex already running", "重建索引正在进行中").
		MustBuild()

	// ErrIndexingFailure indicates a bulk load failure; the new index was rolled back.
	ErrIndexingFailure = NewInternalError(ServiceDiscovery, 1).
		Message("Bulk indexing failed", "批量索引失败").
		MustBuild()

	// ErrIndexCreateFailed indicates the physical index could not be created.
	ErrIndexCreateFailed = NewInternalError(ServiceDiscovery, 2).
		Message("Index creation failed", "创建索引失败").
		MustBuild()

	// ErrAliasSwapFailed indicates the atomic alias update failed.
	ErrAliasSwapFailed = NewInternalError(ServiceDiscovery, 3).
		Message("Alias swap failed", "别名切换失败").
		MustBuild()

	// ErrSearchFailed indicates the search request failed.
	ErrSearchFailed = NewInternalError(ServiceDiscovery, 4).
		Message("Search failed", "搜索失败").
		MustBuild()

	// ErrFacetsFailed indicates the facet queries failed.
	ErrFacetsFailed = NewInternalError(ServiceDiscovery, 5).
		Message("Facets failed", "获取筛选项失败").
		MustBuild()

	// ErrEntityLoadFailed indicates the entity detail query failed.
	ErrEntityLoadFailed = NewInternalError(ServiceDiscovery, 6).
		Message("Entity load failed", "加载实体失败").
		MustBuild()

	// ErrLockFailed indicates the lock backend returned an error.
	ErrLockFailed = NewInternalError(ServiceDiscovery, 7).
		Message("Reindex lock failed", "获取重建锁失败").
		MustBuild()

	// ErrAliasLookupFailed indicates the indices behind the alias could not be resolved.
	ErrAliasLookupFailed = NewInternalError(ServiceDiscovery, 8).
		Message("Alias lookup failed", "解析别名失败").
		MustBuild()

	// ErrDependencyUnavailable indicates a health check failure.
	ErrDependencyUnavailable = NewNetworkError(ServiceDiscovery, 1).
		Message("Dependency unavailable", "依赖服务不可用").
		MustBuild()
)
