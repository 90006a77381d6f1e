package auth

const (
	PermReadUsers          = "read:users"
	PermWriteUsers         = "write:users"
	PermReadRoles          = "read:roles"
	PermWriteRoles         = "write:roles"
	PermReadPermissions    = "read:permissions"
	PermWritePermissions   = "write:permissions"
	PermReadOrganizations  = "read:organizations"
	PermWriteOrganizations = "write:organizations"
	PermReadBlogs          = "read:blogs"
	PermWriteBlogs         = "write:blogs"
	PermWriteFiles         = "write:files"
	PermReadCourses        = "read:courses"
	PermWriteCourses       = "write:courses"
	PermReadStaff          = "read:staff"
	PermWriteStaff         = "write:staff"
	PermReadPayroll        = "read:payroll"
	PermWritePayroll       = "write:payroll"
)

// BuiltinPermissions are seeded on a fresh database.
var BuiltinPermissions = []PermissionInput{
	{Key: PermReadUsers, Name: "Read users"},
	{Key: PermWriteUsers, Name: "Write users"},
	{Key: PermReadRoles, Name: "Read roles"},
	{Key: PermWriteRoles, Name: "Write roles"},
	{Key: PermReadPermissions, Name: "Read permissions"},
	{Key: PermWritePermissions, Name: "Write permissions"},
	{Key: PermReadOrganizations, Name: "Read organizations"},
	{Key: PermWriteOrganizations, Name: "Write organizations"},
	{Key: PermReadBlogs, Name: "Read blogs"},
	{Key: PermWriteBlogs, Name: "Write blogs"},
	{Key: PermWriteFiles, Name: "Upload files"},
	{Key: PermReadCourses, Name: "Read courses"},
	{Key: PermWriteCourses, Name: "Write courses"},
	{Key: PermReadStaff, Name: "Read staff"},
	{Key: PermWriteStaff, Name: "Write staff"},
	{Key: PermReadPayroll, Name: "Read payroll"},
	{Key: PermWritePayroll, Name: "Run payroll"},
}
