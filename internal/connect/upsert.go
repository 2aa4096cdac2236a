// upsert.go -- Read-then-write create-or-update of the connection record.
package connect

import (
	"context"
	"fmt"
	"time"
)

// upsertLockTTL bounds how long a crashed process can hold a client's upsert lock.
const upsertLockTTL = 30 * time.Second

// upsertConnection lists clientID's records and updates the WhatsApp one if it
// exists, otherwise creates rec. Updates never carry ClientID or ExtensionName.
// Without a Locker two concurrent calls for one client can both create.
func upsertConnection(ctx context.Context, st ExtensionStore, lk Locker, rec ConnectionRecord) error {
	if lk != nil {
		release, err := lk.Acquire(ctx, "extension:"+rec.ClientID, upsertLockTTL)
		if err != nil {
			return fmt.Errorf("acquiring upsert lock: %w", err)
		}
		defer release()
	}

	existing, err := st.ListExtensions(ctx, rec.ClientID)
	if err != nil {
		return fmt.Errorf("listing extensions: %w", err)
	}

	for _, ext := range existing {
		if ext.ExtensionID != rec.ExtensionID {
			continue
		}
		if err := st.UpdateExtension(ctx, ext.ID, rec.Patch()); err != nil {
			return fmt.Errorf("updating extension %s: %w", ext.ID, err)
		}
		return nil
	}

	if err := st.CreateExtension(ctx, rec); err != nil {
		return fmt.Errorf("creating extension: %w", err)
	}
	return nil
}
