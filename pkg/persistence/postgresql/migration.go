package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				schema_version VARCHAR(64) NOT NULL,
				snapshot JSONB NOT NULL,
				saved_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflows_name ON workflows(name);
		`,
		2: `
			ALTER TABLE workflows ADD COLUMN node_count INTEGER NOT NULL DEFAULT 0;
		`,
	}
}
