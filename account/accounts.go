package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"memberflow/authority"
	"memberflow/bizerror"
	"memberflow/idgen"
	"memberflow/persistence"
	"memberflow/session"
	"os"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	systemAdminRole        = Role{ID: "system-admin", Title: "System Administrator"}
	SystemAdminPermission  = Permission{ID: "system:admin", Title: "System Administration"}
	systemAdminRoleBinding = RolePermissionBinding{ID: 1, RoleID: systemAdminRole.ID, PermissionID: SystemAdminPermission.ID}

	financialReviewerRole        = Role{ID: "financial-reviewer", Title: "Financial Reviewer"}
	FinancialReviewerPermission  = Permission{ID: "financial_reviewer", Title: "Financial Review"}
	financialReviewerRoleBinding = RolePermissionBinding{ID: 2, RoleID: financialReviewerRole.ID, PermissionID: FinancialReviewerPermission.ID}

	membershipApproverRole        = Role{ID: "membership-approver", Title: "Membership Approver"}
	MembershipApproverPermission  = Permission{ID: "membership_approver", Title: "Membership Approval"}
	membershipApproverRoleBinding = RolePermissionBinding{ID: 3, RoleID: membershipApproverRole.ID, PermissionID: MembershipApproverPermission.ID}
)

// permission ID aliases owned by external auth subsystems; any other role
// string carries no transition rights
var permissionAliases = map[string]string{
	"financial.approver":  FinancialReviewerPermission.ID,
	"membership.approver": MembershipApproverPermission.ID,
	"super_admin":         SystemAdminPermission.ID,
	"national":            SystemAdminPermission.ID,
}

// NormalizePermissionID maps external role-name variants onto the closed
// permission enumeration. Unknown names are returned unchanged.
func NormalizePermissionID(roleName string) string {
	if canonical, found := permissionAliases[roleName]; found {
		return canonical
	}
	return roleName
}

var (
	userIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	LoadPermFunc = loadPerms
)

func LoadPermFuncReset() {
	LoadPermFunc = loadPerms
}

func HashSha256(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

func DefaultSecurityConfiguration() error {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())

	seeds := []interface{}{
		&systemAdminRole, &SystemAdminPermission, &systemAdminRoleBinding,
		&financialReviewerRole, &FinancialReviewerPermission, &financialReviewerRoleBinding,
		&membershipApproverRole, &MembershipApproverPermission, &membershipApproverRoleBinding,
	}
	for _, seed := range seeds {
		if err := db.Save(seed).Error; err != nil {
			return err
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		admin := User{}
		err := tx.Model(&User{}).Where(&User{ID: 1}).First(&admin).Error
		if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
			initialAdminPassword := os.ExpandEnv("${INITIAL_ADMIN_PASSWORD}")
			if initialAdminPassword == "" {
				initialAdminPassword = "admin123"
			}
			if err := tx.Save(&User{ID: 1, Name: "admin", Secret: HashSha256(initialAdminPassword)}).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return tx.Save(&UserRoleBinding{ID: 1, UserID: 1, RoleID: systemAdminRole.ID}).Error
	})
}

func loadPerms(id types.ID) authority.Permissions {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())

	var roleBindings []UserRoleBinding
	if err := db.Where(&UserRoleBinding{UserID: id}).Find(&roleBindings).Error; err != nil {
		return authority.Permissions{}
	}
	if len(roleBindings) == 0 {
		return authority.Permissions{}
	}

	roleIds := make([]string, 0, len(roleBindings))
	for _, binding := range roleBindings {
		roleIds = append(roleIds, binding.RoleID)
	}

	var permBindings []RolePermissionBinding
	if err := db.Where("role_id IN (?)", roleIds).Find(&permBindings).Error; err != nil {
		return authority.Permissions{}
	}

	perms := authority.Permissions{}
	for _, binding := range permBindings {
		perms = append(perms, binding.PermissionID)
	}
	return perms
}

func UpdateBasicAuthSecret(u *BasicAuthUpdating, sec *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	user := User{}
	if err := db.Model(&User{}).Where(&User{ID: sec.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).Scan(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bizerror.ErrInvalidPassword
		}
		return err
	}

	return db.Model(&User{}).Where(&User{ID: sec.Identity.ID, Secret: HashSha256(u.OriginalSecret)}).
		Update(&User{Secret: HashSha256(u.NewSecret)}).Error
}

func QueryUsers(sec *session.Session) (*[]UserInfo, error) {
	if !sec.Perms.HasRole(SystemAdminPermission.ID) {
		return nil, bizerror.ErrForbidden
	}
	var users []UserInfo
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Model(&User{}).Scan(&users).Error; err != nil {
		return nil, err
	}
	return &users, nil
}

func CreateUser(c *UserCreation, sec *session.Session) (*UserInfo, error) {
	if !sec.Perms.HasRole(SystemAdminPermission.ID) {
		return nil, bizerror.ErrForbidden
	}

	user := User{ID: idgen.NextID(userIdWorker), Name: c.Name, Nickname: c.Nickname, Secret: HashSha256(c.Secret)}
	if err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Save(&user).Error; err != nil {
		return nil, err
	}
	return &UserInfo{ID: user.ID, Name: user.Name, Nickname: user.Nickname}, nil
}

func UpdateUser(userId types.ID, c *UserUpdation, sec *session.Session) error {
	if !sec.Perms.HasRole(SystemAdminPermission.ID) && userId != sec.Identity.ID {
		return bizerror.ErrForbidden
	}

	return persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		user := User{ID: userId}
		if err := tx.Where(&user).First(&user).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update(&User{Nickname: c.Nickname}).Error
	})
}

func AssignRole(c *RoleAssignment, sec *session.Session) (*UserRoleBinding, error) {
	if !sec.Perms.HasRole(SystemAdminPermission.ID) {
		return nil, bizerror.ErrForbidden
	}

	binding := UserRoleBinding{}
	err := persistence.ActiveDataSourceManager.GormDB(sec.Context).Transaction(func(tx *gorm.DB) error {
		role := Role{ID: c.RoleID}
		if err := tx.Where(&role).First(&role).Error; err != nil {
			return err
		}
		user := User{ID: c.UserID}
		if err := tx.Where(&user).First(&user).Error; err != nil {
			return err
		}

		err := tx.Where(&UserRoleBinding{UserID: c.UserID, RoleID: c.RoleID}).First(&binding).Error
		if err == nil {
			return nil // already assigned
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		binding = UserRoleBinding{ID: idgen.NextID(userIdWorker), UserID: c.UserID, RoleID: c.RoleID}
		return tx.Create(&binding).Error
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func UnassignRole(c *RoleAssignment, sec *session.Session) error {
	if !sec.Perms.HasRole(SystemAdminPermission.ID) {
		return bizerror.ErrForbidden
	}
	return persistence.ActiveDataSourceManager.GormDB(sec.Context).
		Delete(UserRoleBinding{}, "user_id = ? AND role_id = ?", c.UserID, c.RoleID).Error
}

func QueryAccountNames(ids []types.ID) (map[types.ID]string, error) {
	if len(ids) == 0 {
		return map[types.ID]string{}, nil
	}
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	var records []UserInfo
	if err := db.Model(&User{}).Where("id IN (?)", ids).Scan(&records).Error; err != nil {
		return nil, err
	}
	result := map[types.ID]string{}
	for _, r := range records {
		result[r.ID] = r.DisplayName()
	}
	return result, nil
}
